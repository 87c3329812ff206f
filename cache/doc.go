// Package cache stores offline cache generations.
//
// A Generation is a named set of URL-keyed response entries. A Storage holds
// every generation; exactly one of them is current once the offline
// controller has activated. MemoryStorage keeps generations in process and
// SQLiteStorage persists them across restarts.
package cache

// Package classify assigns store sections to shopping-list item names.
//
// Lookup order is fixed: an explicit section wins, then the user's learned
// mappings in insertion order, then the built-in keyword table in
// declaration order, then FallbackSection. Both tables match by substring
// of the lowercased name and the first match wins.
//
// Learned mappings are bounded (Limits.MaxMappings keys of at most
// Limits.MaxKeyLength runes) and saved through a MappingStore after every
// accepted Learn. When the store runs out of quota the classifier keeps
// working from memory.
package classify

// Package api exposes the classifier as a small JSON API on gin.
//
//	GET  /api/v1/sections  section catalog in display order
//	GET  /api/v1/mappings  learned table
//	POST /api/v1/classify  {"items":[{"name":"leche","section":""}]}
//	POST /api/v1/learn     {"name":"leche de avena","section":"sec_breakfast"}
//	POST /api/v1/import    {"text":"plátanos\ndetergente"}
//
// Errors are {"error": "..."} with a 4xx status. The offline layer excludes
// /api/ so none of these responses are ever cached.
package api

// Package rag provides the similarity-retrieval collaborator. Retrieval
// never fails outward: when the embedder is unconfigured, the vector store
// is unreachable, or a query matches nothing, a curated static document
// list is returned so downstream formatting always has content.
package rag

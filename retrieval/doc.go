// Package retrieval defines the Retriever contract and ships two
// implementations: an in-memory index for embedded corpora and tests,
// and a client for external retrieval services. All implementations
// share the same post-processing rules, so strategies can treat
// retrieval backends interchangeably.
package retrieval

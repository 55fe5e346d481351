// Package matcher links code elements to knowledge entries.
//
// Each function, class and method is tried against three tiers and the
// first tier with a hit wins:
//
//   - tag: an entry tag equals the element name, ignoring case
//   - content: at least 30% of the element name's tokens occur in the
//     entry's title and content
//   - vector: the element summary is embedded and searched against
//     knowledge embeddings, keeping the top 5 hits scoring 0.45 or more
//
// Every tier cites all qualifying entries. Vector lookups run one element
// at a time; a failed lookup is logged and yields no citation.
package matcher

// Package signals turns short text items into ranked instrument opportunities.
// Detection, categorisation, scoring, sentiment, aggregation and analysis are
// pure functions over an immutable Registry snapshot.
package signals

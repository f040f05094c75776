// Package archive reads recorded sensor logs for replay.
//
// A log is a newline-delimited JSON file of topic-addressed, timestamped
// records. Open decodes every record once at this boundary into a closed set
// of message bodies (inertial sample, image frame, event batch, ground-truth
// pose), applies the topic and time filters, and orders the retained
// messages chronologically with the original record order as a stable
// tie-break.
//
// The resulting Reader is a one-shot cursor: total message count and the
// first/last timestamp of the filtered view are available before iteration,
// and Next never yields a message twice.
package archive

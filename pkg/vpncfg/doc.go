// Package vpncfg parses, sanitizes, fingerprints, and scores proxy
// configuration URIs.
//
// Parsing is strict about security and loose about everything else: a
// host or port that fails sanitization rejects the line outright, while
// cosmetic noise (remarks, fragments, parameter order) is normalized
// away. The semantic hash fingerprints a config's operational identity
// only, so duplicates from different sources collapse regardless of
// their tags.
package vpncfg

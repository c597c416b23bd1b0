// Package output writes subscription artifacts: raw, base64, CSV,
// sing-box JSON, Clash YAML, Surge, Quantumult X, the plain XYZ list,
// and the generation report. Every write is atomic and the output
// directory is serialized behind a single writer.
package output

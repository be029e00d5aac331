// Package logging configures structured slog output for lightbox.
//
// Two handler formats are supported: "console", a compact single-line
// format for interactive use, and "json" for machine consumption. Both
// honor a shared level and flatten attribute groups into dotted keys.
//
// Components obtain loggers through NewComponentLogger so every record
// carries a stable "component" attribute. Warnings about degraded but
// non-fatal behavior attach the standardized event_type/error_hint/impact
// fields so cause, consequence, and next step stay distinguishable.
package logging

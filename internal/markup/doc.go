// Package markup extracts canonical records from XML reports found in
// extraction containers.
//
// Known report layouts are handled by templates keyed on the root element:
// SMS Backup & Restore message files (smses), call log backups (calls) and
// UFED-style reports built from typed model elements. Anything else goes
// through a generic pass that turns each element carrying attributes or
// leaf children into a pseudo-row and scores it with the same signature
// detector used for database tables.
//
// The document is decoded as a token stream, so memory use is bounded by
// the nesting depth rather than the file size.
package markup

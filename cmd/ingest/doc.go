// Command ingest parses, submits, and inspects health files from the
// command line against a local SQLite database and blob directory, or
// against the stores named in a config file.
package main

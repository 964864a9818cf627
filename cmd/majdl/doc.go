// Package main hosts the majdl CLI entrypoint and command graph.
//
// Running majdl with an output directory logs in to the lobby, downloads
// every record that is not already stored or memoized, and then fills in and
// decodes the detail payload of each record. With -N it only runs the detail
// and decode stages over documents already on disk. The status, login and
// config subcommands inspect local state, refresh the stored session and
// scaffold the configuration file.
package main

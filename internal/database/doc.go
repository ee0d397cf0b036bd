// Package database provides PostgreSQL connection pools.
//
// The only consumer is the protocol journal, which writes through a single
// pool built from config.DBConfig.
package database

// Package store holds the persistence plumbing shared by the SQL queue
// persisters: the DBTX abstraction, transaction handling and the error
// vocabulary persisters map driver errors onto.
package store

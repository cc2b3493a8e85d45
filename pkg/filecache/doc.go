// Package filecache is a filesystem-backed key-value cache for a single process.
//
// Every cached key is stored as one file inside the cache directory, named by
// the key's digest ([EncodeKey]). Type and expiry information lives in a
// separate metadata index that is loaded once by [Open] and rewritten once by
// [Cache.Flush]. During a session all mutations are staged in memory:
//
//	c, err := filecache.Open(filecache.Config{Dir: "/var/cache/app"})
//	if err != nil {
//	    return err
//	}
//	defer c.Close() // flushes staged writes and deletes
//
//	_ = c.Set("user:1", filecache.String("alice"), filecache.Seconds(60))
//	v := c.Get("user:1", filecache.String(""))
//
// Nothing is written to disk until Flush or Close. Close must be called on
// every exit path; there is no finalizer.
//
// Expiry is lazy: expired entries read as misses and are swept by Flush,
// which also removes any file in the directory that has no index entry
// (an orphan). After a successful Flush the set of entry files equals the
// set of indexed keys.
//
// A Cache is safe for concurrent use by multiple goroutines. Sharing one
// directory between processes is not supported: the last Flush wins the
// snapshot and one process's orphan sweep deletes the other's files. Set
// [Config.LockDir] to turn that misuse into an [ErrLocked] failure at Open.
package filecache

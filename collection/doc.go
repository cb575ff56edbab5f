// Package collection rebuilds owned multi-valued associations (bags, lists,
// sets, maps and arrays) from a forward-only stream of result rows.
//
// A statement execution is a Load obtained from a Session. Each fetch path
// of an association gets its own Initializer from the association's
// Producer; Process drives every initializer through every row, and
// Load.End finalizes the collections that were claimed, empty ones
// included. The Session caches wrappers across statements and allows at
// most one Load to fill a given collection at a time.
//
//	load := session.Begin(ctx)
//	posts, _ := postsProducer.Joined("User.Posts")
//	if _, err := collection.Process(load, cursor, posts); err != nil {
//		load.Abandon()
//		return err
//	}
//	return load.End()
package collection

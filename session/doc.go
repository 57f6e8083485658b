// Package session tracks which database a plugin instance talks to.
//
// A Registry remembers the name recorded by open, lazily creates the single
// tracked handle on first use, and lets a batch that arrives before its open
// wait briefly for the name through a Gate.
//
//	reg := session.NewRegistry(db.Opener(cfg), time.Second)
//	reg.Open("app.db")
//	name, err := reg.ResolveName(ctx, "")
//	err = reg.Acquire(ctx, name, func(h *db.Handle) error { ... })
//	reg.Close()
package session

package dynamap

// Package dynamap projects typed views onto immutable, structurally shared
// key/value maps. A schema is an ordinary Go struct type whose fields carry
// `dyn` tags; no concrete accessor implementation is ever written by the
// caller. The runtime provides:
//
// - Typed getters and "with"-style builders over a persistent backing map
//   (Get/With; every builder yields a new Instance, the original is untouched)
// - Structural validation against the declared schema via Issues
//   (every violation reported, not just the first)
// - Structural merge/intersect/subtract built on a three-way map diff
// - A dynamic Invoke dispatcher resolving accessor shapes classified once per
//   schema type
// - Tagged (de)serialization through codec/ with a process-wide tag registry
//
// Design policy:
// - Keep only public APIs in the root package; put type classification under
//   internal/.
// - Place the persistent-map boundary under pmap/ and codecs under codec/.
// - Prefer black-box testing against public APIs.
//
// Typical usage:
//
//  type User struct {
//      Name string  `dyn:"name,required"`
//      Age  *int64  `dyn:"age"`
//  }
//
//  u := dynamap.New[User]()
//  u, _ = u.With("name", "alice")
//  name, err := dynamap.Get[string](u, "name")
//  u2, err := u.Validate(ctx)
//

// Package dtograph maps persistent entity graphs to and from transfer
// objects under a sparse-fieldset / include selection.
//
// Transfer objects are Go structs described by `dto` struct tags. A request
// such as "fields[person]=name&include=department" resolves to a selection
// spec; the mapper materializes exactly that slice of an entity graph, and
// applies incoming transfer objects back onto entities, leaving one-to-many
// collections to a reconciler.
//
// The module is organized into these packages:
//
//   - [github.com/CaliLuke/go-dtograph/meta]: type metadata registry for transfer objects and entities
//   - [github.com/CaliLuke/go-dtograph/selection]: selection specs and their resolution
//   - [github.com/CaliLuke/go-dtograph/resolve]: per-field custom resolvers
//   - [github.com/CaliLuke/go-dtograph/mapper]: entity to DTO materialization and DTO application
//   - [github.com/CaliLuke/go-dtograph/reconcile]: one-to-many child reconciliation
//   - [github.com/CaliLuke/go-dtograph/store]: persistence interfaces, with memstore and sqlstore backends
//   - [github.com/CaliLuke/go-dtograph/service]: get/create/update/delete over a store
//   - [github.com/CaliLuke/go-dtograph/query]: query-string parser for fields and include
//   - [github.com/CaliLuke/go-dtograph/wire]: sparse document projection with JSON and MessagePack codecs
//
// The example package wires a small staffing domain end to end and backs
// the dtograph command.
package dtograph

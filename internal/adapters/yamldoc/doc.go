// Package yamldoc loads and serializes workflow documents. A document is
// the YAML face of a domain.Graph plus two host-binding sections: the
// functions a document expects the host to register, and the built-in
// observers to attach. Nodes, transitions and policy survive a
// parse/serialize round trip.
package yamldoc

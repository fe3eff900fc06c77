// Package apisix provides types, interfaces, and helpers for working with the
// Apache APISIX admin and control APIs.
//
// # Overview
//
// The apisix package defines the generic entity model (Entity), the resource
// client interfaces (ResourceClient, Client), the capability model
// (CapabilitySet), and the bulk operations built on top of them: batches,
// import/export, and clone. A concrete client is provided by the apisixclient
// package, which wires configuration, transport, capability detection and
// pagination. Most consumers should import apisixclient to construct a client
// and then work with the interfaces exposed here.
//
// Getting a client
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/apisix-client/pkg/apisix"
//	  "github.com/fivetwenty-io/apisix-client/pkg/apisixclient"
//	)
//
//	func example() {
//	  ctx := context.Background()
//	  cli, err := apisixclient.New(ctx, &apisix.Config{
//	    AdminURL: "http://127.0.0.1:9180",
//	    APIKey:   "edd1c9f034335f136f87ad84b625c8f1",
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  routes, err := cli.Routes().List(ctx, nil)
//	  if err != nil { log.Fatal(err) }
//	  _ = routes
//	}
//
// # Server revisions
//
// 2.x servers wrap every response in an etcd-style node envelope and reject
// pagination parameters; 3.x servers use key/value and list/total envelopes
// and paginate. The client hides the difference: every read returns plain
// entities with their id populated, and ListPaginated has the same result
// shape on both revisions. Capabilities are probed once per client unless a
// server version is declared in Config.
//
// # Bulk operations
//
// BatchExecutor applies ordered create/update/delete operations with
// continue-on-error or stop-at-first-failure semantics. TransferEngine exports
// a full collection as JSON or YAML and imports it back with a replace, merge
// or skip_existing conflict strategy. Cloner copies an entity, recovering key
// material that certificate GETs leave out.
//
// # Errors
//
// Gateway errors are represented by HTTPError, NetworkError, TimeoutError,
// ParseError and ValidationError. Helpers such as IsNotFound, IsNetworkError
// and IsValidationError make it easy to branch on them.
package apisix

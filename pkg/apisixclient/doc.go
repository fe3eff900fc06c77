// Package apisixclient provides the entry point for constructing an APISIX
// gateway client that implements the apisix.Client interface.
//
// It normalizes configuration and wires the transport, capability detection
// and bulk operations defined in the apisix package. Most applications import
// apisixclient to build a client, then use the returned apisix.Client to reach
// the per-collection resource clients, for example Routes(), Upstreams(),
// SSLs(), or the control API through Control().
//
// Quick start
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
//
//	  cli, err := apisixclient.New(ctx, &apisix.Config{
//	    AdminURL: "http://127.0.0.1:9180",
//	    APIKey:   "edd1c9f034335f136f87ad84b625c8f1",
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  routes, err := cli.Routes().List(ctx, nil)
//	  if err != nil { log.Fatal(err) }
//	  log.Printf("%d routes", len(routes))
//	}
//
// Configuration files
//
// LoadConfig reads YAML (or any format viper supports) and APISIX_*
// environment variables:
//
//	admin_url: http://127.0.0.1:9180
//	control_url: http://127.0.0.1:9090
//	api_key: edd1c9f034335f136f87ad84b625c8f1
//	timeout: 10s
//	server_version: 3.8.0
//	retry_max: 3
//
// Environment variables win over the file, e.g. APISIX_API_KEY.
package apisixclient

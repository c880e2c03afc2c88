// Package hcl provides the HCL implementation of config.Loader.
//
// An integrator is configured with one optional integrator block and any
// number of feature_app blocks, spread over one or more .hcl files:
//
//	integrator {
//	  consumer_id  = "integrator"
//	  max_attempts = 10
//	  timeout      = "5s"
//	  externals    = { react = "16.14.0" }
//	}
//
//	feature_app "app:banner" {
//	  src        = "https://cdn.example.com/banner.js"
//	  server_src = "https://cdn.example.com/banner.json"
//	  config     = { title = "Hello" }
//
//	  stylesheet {
//	    href = "https://cdn.example.com/banner.css"
//	  }
//	}
package hcl

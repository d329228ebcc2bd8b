// Command httpcall sends one HTTP request through an httpkit client and
// prints the normalized response as JSON.
//
//	httpcall --base-url https://api.example.com GET /users/1
//	httpcall -d '{"name":"Bob"}' -H 'X-Team: core' POST /users
//
// Configuration is read from httpcall.yml, a .env file and HTTPCALL_*
// environment variables; flags win over all of them.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

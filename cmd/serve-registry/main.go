// Simple implementation of a release registry to be used by the updater with the http source.
//
// The root directory holds one folder per release: {root}/{owner}/{repo}/{version}/{files}.
package main

import (
	"flag"
	"log"
	"net/http"
	"path"
	"time"
)

func main() {
	var root, listen, prefix string
	flag.StringVar(&root, "root", ".", "Root path of the release folders")
	flag.StringVar(&listen, "listen", "localhost:9947", "IP address and port used for the HTTP server")
	flag.StringVar(&prefix, "path-prefix", "/releases", "Prefix to the root path of the HTTP server")
	flag.Parse()

	pathPrefix := path.Join("/", prefix)
	log.Printf("serving %q on http://%s%s (set release_api_url to this address)", root, listen, pathPrefix)

	mux := http.NewServeMux()
	mux.Handle(pathPrefix+"/", http.StripPrefix(pathPrefix, WithLogging(NewRegistry(root))))
	server := http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}

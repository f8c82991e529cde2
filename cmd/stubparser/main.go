// Command stubparser serves a local stand-in for the parsing service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/metcalfc/pdfjson/internal/stub"
)

func main() {
	addr := pflag.StringP("addr", "a", ":8080", "Listen address")
	maxMB := pflag.Int64("max-mb", 100, "Reject uploads larger than this many MB, 0 for no limit")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "stubparser - local stand-in for the pdfjson parsing service\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  stubparser [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExample:\n")
		fmt.Fprintf(os.Stderr, "  stubparser -a :8080 &\n")
		fmt.Fprintf(os.Stderr, "  pdfjson -u http://localhost:8080 cv.pdf\n")
	}
	pflag.Parse()

	e := stub.New(*maxMB * 1024 * 1024)

	go func() {
		log.Printf("stubparser listening on %s", *addr)
		if err := e.Start(*addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jgivc/notehub/internal/app"
)

func main() {
	cfgFileName := flag.String("c", "config.yml", "Path to config file")
	printTree := flag.Bool("tree", false, "Print the catalog and exit")
	flag.Parse()

	app := app.New(*cfgFileName)

	if *printTree {
		if err := app.Tree(); err != nil {
			fmt.Fprintf(os.Stderr, "Cannot print catalog: %s\n", err)
			os.Exit(1)
		}

		return
	}

	app.Start()

	c := make(chan os.Signal, 1)
	done := make(chan struct{})

	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)
	go func() {
		defer close(done)

		for sig := range c {
			switch sig {
			case syscall.SIGUSR1:
				go app.Sweep()
			case syscall.SIGUSR2:
				go app.Dump()
			case syscall.SIGTERM, syscall.SIGINT:
				fmt.Println("Received termination signal. Shutting down...")

				return
			}
		}
	}()

	<-done
	signal.Stop(c)
	app.Stop()
	fmt.Println("done")
}

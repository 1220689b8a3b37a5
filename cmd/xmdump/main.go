package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/chriskillpack/xmengine"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("xmdump: ")

	if len(os.Args) <= 1 {
		log.Fatal("Missing song filename")
	}

	songFName := os.Args[1]
	songF, err := os.ReadFile(songFName)
	if err != nil {
		log.Fatal(err)
	}

	xmengine.SetDumpWriter(os.Stdout)

	switch strings.ToLower(filepath.Ext(songFName)) {
	case ".xm":
		_, err = xmengine.LoadXM(songF)
	case ".xmized":
		_, err = xmengine.RestoreImage(songF, 48000)
	default:
		err = fmt.Errorf("unsupported song %q", songFName)
	}
	if err != nil {
		log.Fatal(err)
	}
}

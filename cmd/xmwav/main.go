// XM player renderer: plays a module offline and writes the result to a
// WAV file (16-bit, stereo).

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/chriskillpack/xmengine"
	"github.com/chriskillpack/xmengine/internal/wav"
)

var (
	flagHz    = flag.Int("hz", 48000, "output hz")
	flagWav   = flag.String("wav", "", "output to a WAVE file")
	flagLoops = flag.Int("loops", 1, "number of passes through the song to render")
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("xmwav: ")

	flag.Parse()
	if len(flag.Args()) == 0 {
		log.Fatal("Missing XM filename")
	}
	if *flagWav == "" {
		log.Fatal("No -wav option provided")
	}

	songFName := flag.Arg(0)
	songF, err := os.ReadFile(songFName)
	if err != nil {
		log.Fatal(err)
	}

	var ctx *xmengine.Context
	if strings.EqualFold(filepath.Ext(songFName), ".xmized") {
		ctx, err = xmengine.RestoreImage(songF, *flagHz)
	} else {
		var mod *xmengine.Module
		mod, err = xmengine.LoadXM(songF)
		if err == nil {
			ctx = xmengine.NewContext(mod, *flagHz)
		}
	}
	if err != nil {
		log.Fatal(err)
	}
	ctx.SetMaxLoopCount(*flagLoops)

	wavF, err := os.Create(*flagWav)
	if err != nil {
		log.Fatal(err)
	}
	defer wavF.Close()

	var wavW *wav.Writer
	if wavW, err = wav.NewWriter(wavF, *flagHz); err != nil {
		log.Fatal(err)
	}
	defer wavW.Finish()

	// Listen for SIGINT to allow a clean exit
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT)

	audioOut := make([]float32, 2048)
	playing := true

	go func() {
		<-c
		playing = false
	}()

	lastTable := -1
	for playing && ctx.LoopCount() < *flagLoops {
		ctx.GenerateSamples(audioOut, len(audioOut)/2)
		if err = wavW.WriteFrames(audioOut); err != nil {
			wavF.Close()
			log.Fatal(err)
		}

		if table, _, _ := ctx.GetPosition(); table != lastTable {
			fmt.Printf("%d/%d\n", table+1, ctx.ModuleLength())
			lastTable = table
		}
	}
}

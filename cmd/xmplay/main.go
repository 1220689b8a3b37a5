package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/chriskillpack/xmengine"
	"github.com/chriskillpack/xmengine/cmd/internal/config"
)

var (
	flagHz      = flag.Int("hz", 48000, "output hz")
	flagStart   = flag.Int("start", 0, "starting position in the pattern table, clamped to song length")
	flagReverb  = flag.String("reverb", "light", "reverb setting: none, light, medium or silly")
	flagNoUI    = flag.Bool("noui", false, "disable the pattern display")
	flagNearest = flag.Bool("nearest", false, "use nearest-neighbor sample interpolation")
	flagLoops   = flag.Int("loops", 0, "stop after this many passes through the song, 0 plays forever")
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("xmplay: ")
	flag.Parse()

	if len(flag.Args()) == 0 {
		log.Fatal("Missing XM filename")
	}

	songF, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}

	ctx, err := loadContext(flag.Arg(0), songF, *flagHz)
	if err != nil {
		log.Fatal(err)
	}

	start := *flagStart
	if start >= ctx.ModuleLength() {
		start = ctx.ModuleLength() - 1
	}
	if start > 0 {
		ctx.Seek(start, 0, 0)
	}
	ctx.SetNearestNeighbor(*flagNearest)
	if *flagLoops > 0 {
		ctx.SetMaxLoopCount(*flagLoops)
	}

	reverb, err := config.ReverbFromFlag(*flagReverb, *flagHz)
	if err != nil {
		log.Fatal(err)
	}

	play(ctx, reverb)
}

// loadContext builds a playback context from either an XM file or a
// serialized module image, keyed off the file extension.
func loadContext(name string, data []byte, hz int) (*xmengine.Context, error) {
	if strings.EqualFold(filepath.Ext(name), ".xmized") {
		return xmengine.RestoreImage(data, hz)
	}
	mod, err := xmengine.LoadXM(data)
	if err != nil {
		return nil, err
	}
	return xmengine.NewContext(mod, hz), nil
}

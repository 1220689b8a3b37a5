package xmengine

import "testing"

func triggeredTestChannel(ctx *Context) *Channel {
	ch := &ctx.channels[0]
	smp := &ctx.module.Instruments[0].Samples[0]
	ch.sample = smp
	ch.instrument = &ctx.module.Instruments[0]
	ch.samplePosition = 0
	ch.ping = true
	ch.volume = 1.0
	ch.volEnvValue = 1.0
	ch.fadeoutVolume = 1.0
	ch.panning = 0.5
	ch.step = 1.0
	return ch
}

func TestFetchInterpolatedLinearBlendsNeighbors(t *testing.T) {
	ctx := newTestContext(t)
	ch := triggeredTestChannel(ctx)
	ch.samplePosition = 0.5

	got := fetchInterpolated(ctx, ch)
	want := (float64(ch.sample.Data[0]) + float64(ch.sample.Data[1])) / 2 / 32768.0
	if got != want {
		t.Errorf("fetchInterpolated = %v, want %v", got, want)
	}
}

func TestFetchInterpolatedNearestNeighborIgnoresFraction(t *testing.T) {
	ctx := newTestContext(t)
	ctx.nearestNeighbor = true
	ch := triggeredTestChannel(ctx)
	ch.samplePosition = 0.9

	got := fetchInterpolated(ctx, ch)
	want := float64(ch.sample.Data[0]) / 32768.0
	if got != want {
		t.Errorf("fetchInterpolated (nearest) = %v, want %v", got, want)
	}
}

func TestAdvanceSamplePositionStopsAtEndWithoutLoop(t *testing.T) {
	ctx := newTestContext(t)
	ch := triggeredTestChannel(ctx)
	ch.sample.LoopType = LoopNone
	ch.samplePosition = float64(ch.sample.Length) - 0.5
	ch.step = 1.0

	advanceSamplePosition(ch)
	if ch.samplePosition != -1 {
		t.Errorf("samplePosition = %v, want -1 after running off the end of an unlooped sample", ch.samplePosition)
	}
}

func TestAdvanceSamplePositionForwardLoopWraps(t *testing.T) {
	ctx := newTestContext(t)
	ch := triggeredTestChannel(ctx)
	ch.sample.LoopType = LoopForward
	ch.sample.LoopStart = 4
	ch.sample.LoopEnd = 16
	ch.samplePosition = 15.5
	ch.step = 1.0

	advanceSamplePosition(ch)
	if ch.samplePosition < 4 || ch.samplePosition >= 16 {
		t.Errorf("samplePosition = %v, want within [4,16) after forward loop wrap", ch.samplePosition)
	}
}

func TestAdvanceSamplePositionPingPongReverses(t *testing.T) {
	ctx := newTestContext(t)
	ch := triggeredTestChannel(ctx)
	ch.sample.LoopType = LoopPingPong
	ch.sample.LoopStart = 0
	ch.sample.LoopEnd = 16
	ch.samplePosition = 15.5
	ch.ping = true
	ch.step = 1.0

	advanceSamplePosition(ch)
	if ch.ping {
		t.Errorf("ping-pong loop should flip direction to backward after hitting loop_end")
	}
}

func TestRampTowardReachesTargetWithinWindow(t *testing.T) {
	cur := 0.0
	for i := 0; i < 129; i++ {
		cur = rampToward(cur, 1.0)
	}
	if cur != 1.0 {
		t.Errorf("rampToward did not reach target 1.0 within the ramp window, got %v", cur)
	}
}

func TestChannelActiveRespectsMuteFlags(t *testing.T) {
	ctx := newTestContext(t)
	ch := triggeredTestChannel(ctx)

	if !channelActive(ch) {
		t.Fatalf("channel should be active before any mute is applied")
	}
	ch.muted = true
	if channelActive(ch) {
		t.Errorf("channel should be inactive once muted")
	}
	ch.muted = false
	ch.instrument.Muted = true
	if channelActive(ch) {
		t.Errorf("channel should be inactive when its instrument is muted")
	}
}

func TestIsChannelActiveIgnoresMute(t *testing.T) {
	ctx := newTestContext(t)
	ch := triggeredTestChannel(ctx)

	if !ctx.IsChannelActive(0) {
		t.Fatalf("channel with a sounding note should be active")
	}
	ch.muted = true
	if !ctx.IsChannelActive(0) {
		t.Errorf("muting must not make a sounding channel inactive")
	}
	if channelActive(ch) {
		t.Errorf("the mixer must still skip a muted channel")
	}
	ch.muted = false
	ch.samplePosition = -1
	if ctx.IsChannelActive(0) {
		t.Errorf("a channel with no oscillator position is inactive")
	}
}

func TestMixFrameProducesFiniteOutput(t *testing.T) {
	ctx := newTestContext(t)
	triggeredTestChannel(ctx)

	out := make([]float32, 2)
	mixFrame(ctx, out)

	if out[0] != out[0] || out[1] != out[1] {
		t.Errorf("mixFrame produced NaN output")
	}
}

package xmengine

// mixer.go is the per-frame oscillator/envelope/ramp/pan pipeline that
// produces one stereo float32 frame. Accumulation happens in float64 and
// no clipping is applied; clamping is the host's job at its output format
// boundary.

// mixFrame renders one stereo frame for every active channel into out
// (out[0]=left, out[1]=right), applying the global volume and
// amplification scale last.
func mixFrame(ctx *Context, out []float32) {
	var left, right float64

	for i := 0; i < ctx.module.NumChannels; i++ {
		ch := &ctx.channels[i]
		if !channelActive(ch) {
			continue
		}
		l, r := mixChannelScalar(ctx, ch)
		left += l
		right += r
	}

	scale := ctx.globalVolume * ctx.amplification
	out[0] = float32(left * scale)
	out[1] = float32(right * scale)
}

// channelActive reports whether a channel currently contributes to the
// mix: it has a sample, a non-negative playback position, and is not
// muted at either the channel or instrument level.
func channelActive(ch *Channel) bool {
	if ch.sample == nil || ch.samplePosition < 0 {
		return false
	}
	if ch.muted || ch.sample.Muted {
		return false
	}
	if ch.instrument != nil && ch.instrument.Muted {
		return false
	}
	return true
}

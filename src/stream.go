package audiomix

/*------------------------------------------------------------------
 *
 * Purpose: Client-visible stream object (§3 "Stream (client view)").
 *	    Exclusively owned by the stream registry; dev_stream borrows
 *	    it without owning it.
 *
 *---------------------------------------------------------------*/

// Stream is one client playback or capture connection. It is created by a
// CONNECT_STREAM request and destroyed on disconnect or explicit removal.
type Stream struct {
	ID        StreamID
	Dir       Direction
	Format    AudioFormat
	CbThresh  int // callback threshold: frames per client wake
	BufFrames int // buffer size in frames
	Effects   EffectFlags
	ClientPID int // client-process credential
	Gain      float64 // per-stream linear scaler, applied post-DSP on capture (§4.4)

	ring *ShmRing
}

// NewStream allocates a stream and its backing shared ring. id's
// client-id half must already have been validated against a live client
// by the caller (§3 invariant).
func NewStream(id StreamID, dir Direction, format AudioFormat, cbThresh, bufFrames int, effects EffectFlags, clientPID int) (*Stream, error) {
	if err := ValidateFormat(format); err != nil {
		return nil, err
	}
	ring, err := NewShmRing(format.FrameBytes(), bufFrames)
	if err != nil {
		return nil, err
	}
	return &Stream{
		ID:        id,
		Dir:       dir,
		Format:    format,
		CbThresh:  cbThresh,
		BufFrames: bufFrames,
		Effects:   effects,
		ClientPID: clientPID,
		Gain:      1.0,
		ring:      ring,
	}, nil
}

// Ring returns the stream's shared-memory ring.
func (s *Stream) Ring() *ShmRing { return s.ring }

// Close releases the stream's shared memory. Called once all dev_stream
// attachments referencing it have been torn down.
func (s *Stream) Close() error { return s.ring.Close() }

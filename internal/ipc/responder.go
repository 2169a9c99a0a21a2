package ipc

import (
	"errors"
	"io"
)

// Responder answers requests on the worker side of a channel
type Responder struct {
	conn *Conn
}

// NewResponder creates a responder reading requests from r and writing replies to w
func NewResponder(r io.Reader, w io.Writer) *Responder {
	return &Responder{conn: NewConn(r, w)}
}

// Serve answers every request with the reply built by handle until the stream
// ends. Requests without an id are ignored.
func (s *Responder) Serve(handle func(id uint64) *Reply) error {
	for {
		var req Request
		if err := s.conn.Receive(&req); err != nil {
			if errors.Is(err, ErrChannelClosed) {
				return nil
			}
			return err
		}
		if req.ID == 0 {
			continue
		}
		reply := handle(req.ID)
		reply.ID = req.ID
		if err := s.conn.Send(reply); err != nil {
			return err
		}
	}
}

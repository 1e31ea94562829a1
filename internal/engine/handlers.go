package engine

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/gosuda/neutron/internal/cryptocore"
	"github.com/gosuda/neutron/internal/repository"
	"github.com/gosuda/neutron/internal/transfer"
	"github.com/gosuda/neutron/internal/wire"
)

// dispatch routes one decoded packet according to the connection's
// current state (§4.3). A returned error is always fatal to the
// connection; application-level failures are reported in-band via
// ReAuthorization/ReUpload and never surface here as an error.
func (c *Connection) dispatch(typ wire.PacketType, payload []byte) error {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	switch state {
	case Authenticating:
		if typ != wire.TypeRtAuthorization {
			return fmt.Errorf("engine: packet %s illegal in state %s", typ, state)
		}
		return c.handleRtAuthorization(payload)

	case Authenticated:
		switch typ {
		case wire.TypeSynchronize:
			return c.handleSynchronize(payload)
		case wire.TypeMessage:
			return c.handleMessage(payload)
		case wire.TypeRtRoom:
			return c.handleRtRoom(payload)
		case wire.TypeRtUpload:
			return c.handleRtUpload(payload)
		case wire.TypeUpload:
			return c.handleUpload(payload)
		case wire.TypeUploadState:
			return c.handleUploadState(payload)
		case wire.TypePong:
			return c.handlePong(payload)
		default:
			return fmt.Errorf("engine: packet %s illegal in state %s", typ, state)
		}

	default:
		return fmt.Errorf("engine: packet %s illegal in state %s", typ, state)
	}
}

func (c *Connection) handleRtAuthorization(payload []byte) error {
	req, err := wire.DecodeRtAuthorization(payload)
	if err != nil {
		return fmt.Errorf("engine: decode RtAuthorization: %w", err)
	}

	switch req.Request {
	case wire.AuthSignin:
		return c.handleSignin(req)
	case wire.AuthSignup:
		return c.handleSignup(req)
	default:
		return fmt.Errorf("engine: unknown RtAuthorization.Request %d", req.Request)
	}
}

func (c *Connection) handleSignin(req wire.RtAuthorization) error {
	username := string(req.Username)
	user, err := c.server.repo.LookupUser(c.ctx, username)
	if errors.Is(err, repository.ErrUserNotFound) {
		return c.send(wire.TypeReAuthorization, wire.ReAuthorization{
			Response: wire.AuthErrorOccurred, Error: wire.AuthErrInvalidUsername,
		}.Encode())
	}
	if err != nil {
		return fmt.Errorf("engine: lookup user: %w", err)
	}

	derived := cryptocore.DeriveKey(req.Password, user.Salt)
	if !constantTimeEqual(derived, user.Derived) {
		return c.send(wire.TypeReAuthorization, wire.ReAuthorization{
			Response: wire.AuthErrorOccurred, Error: wire.AuthErrInvalidPassword,
		}.Encode())
	}

	return c.completeAuthorization(username)
}

func (c *Connection) handleSignup(req wire.RtAuthorization) error {
	username := string(req.Username)
	salt, err := cryptocore.NewSalt()
	if err != nil {
		return fmt.Errorf("engine: generate salt: %w", err)
	}
	derived := cryptocore.DeriveKey(req.Password, salt)

	err = c.server.repo.CreateUser(c.ctx, username, derived, salt)
	if errors.Is(err, repository.ErrUserExists) {
		return c.send(wire.TypeReAuthorization, wire.ReAuthorization{
			Response: wire.AuthErrorOccurred, Error: wire.AuthErrUserExists,
		}.Encode())
	}
	if err != nil {
		return fmt.Errorf("engine: create user: %w", err)
	}

	return c.completeAuthorization(username)
}

// completeAuthorization implements the Authenticating -> Authenticated
// transition shared by Signin and Signup (§4.3): set the user id,
// register in the presence registry, and send Authorized + Established.
func (c *Connection) completeAuthorization(username string) error {
	c.mu.Lock()
	c.userID = username
	c.state = Authenticated
	c.mu.Unlock()

	c.server.registry.Connect(c)

	if err := c.send(wire.TypeReAuthorization, wire.ReAuthorization{
		Response: wire.AuthAuthorized, Error: wire.AuthErrNone,
	}.Encode()); err != nil {
		return err
	}

	rooms, err := c.server.repo.ListRooms(c.ctx)
	if err != nil {
		return fmt.Errorf("engine: list rooms: %w", err)
	}
	roomInfos := make([]wire.RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		roomInfos = append(roomInfos, wire.RoomInfo{ID: r.ID, Name: r.Name})
	}

	return c.send(wire.TypeEstablished, wire.Established{
		ServerName: c.server.name,
		Motd:       c.server.motd,
		Rooms:      roomInfos,
	}.Encode())
}

func (c *Connection) handleSynchronize(payload []byte) error {
	req, err := wire.DecodeSynchronize(payload)
	if err != nil {
		return fmt.Errorf("engine: decode Synchronize: %w", err)
	}

	c.mu.Lock()
	roomID := c.roomID
	c.mu.Unlock()
	if roomID == "" {
		return fmt.Errorf("engine: Synchronize requires being in a room")
	}

	afterSeqID, err := c.server.repo.SeqIDForMessage(c.ctx, req.LastSeenID)
	if err != nil {
		return fmt.Errorf("engine: resolve last seen id: %w", err)
	}

	messages, err := c.server.repo.ListSince(c.ctx, []byte(roomID), afterSeqID)
	if err != nil {
		return fmt.Errorf("engine: list since: %w", err)
	}

	for _, m := range messages {
		if err := c.send(wire.TypeMessage, wire.Message{
			Timestamp: m.Timestamp,
			MessageID: m.MessageID,
			SenderID:  []byte(m.SenderID),
			Content:   m.Content,
		}.Encode()); err != nil {
			return err
		}
	}
	return nil
}

func (c *Connection) handleMessage(payload []byte) error {
	req, err := wire.DecodeMessage(payload)
	if err != nil {
		return fmt.Errorf("engine: decode Message: %w", err)
	}

	c.mu.Lock()
	roomID := c.roomID
	userID := c.userID
	c.mu.Unlock()
	if roomID == "" {
		return fmt.Errorf("engine: Message requires being in a room")
	}

	timestamp := time.Now().Unix()
	_, err = c.server.repo.InsertMessage(c.ctx, timestamp, req.MessageID, []byte(roomID), userID, req.Content)
	if errors.Is(err, repository.ErrDuplicateMessage) {
		return fmt.Errorf("engine: duplicate message id: %w", err)
	}
	if err != nil {
		return fmt.Errorf("engine: insert message: %w", err)
	}

	out := wire.Message{
		Timestamp: timestamp,
		MessageID: req.MessageID,
		SenderID:  []byte(userID),
		Content:   req.Content,
	}.Encode()
	c.server.registry.Broadcast(roomID, c, wire.TypeMessage, out)
	return nil
}

func (c *Connection) handleRtRoom(payload []byte) error {
	req, err := wire.DecodeRtRoom(payload)
	if err != nil {
		return fmt.Errorf("engine: decode RtRoom: %w", err)
	}

	switch req.Request {
	case wire.RoomJoin:
		return c.joinRoom(req.RoomID)
	case wire.RoomLeave:
		return c.leaveRoom(true)
	default:
		return fmt.Errorf("engine: unknown RtRoom.Request %d", req.Request)
	}
}

func (c *Connection) joinRoom(roomID []byte) error {
	if _, err := c.server.repo.RoomByID(c.ctx, roomID); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return fmt.Errorf("engine: join unknown room: %w", err)
		}
		return fmt.Errorf("engine: room lookup: %w", err)
	}

	c.mu.Lock()
	alreadyIn := c.roomID
	c.mu.Unlock()
	if alreadyIn != "" {
		if err := c.leaveRoom(false); err != nil {
			return err
		}
	}

	id := string(roomID)
	c.mu.Lock()
	c.roomID = id
	userID := c.userID
	c.mu.Unlock()

	if err := c.send(wire.TypeReRoom, wire.ReRoom{Response: wire.RoomJoined}.Encode()); err != nil {
		return err
	}

	notify := !c.server.registry.OtherUserConnectionExists(id, userID, c)
	others := c.server.registry.DistinctOtherUsers(id, c)
	for _, peer := range others {
		if err := c.send(wire.TypeUserState, wire.UserState{
			UserID: []byte(peer.UserID()), State: wire.UserJoined,
		}.Encode()); err != nil {
			return err
		}
	}
	if notify {
		c.server.registry.BroadcastOtherUsers(id, c, wire.TypeUserState, wire.UserState{
			UserID: []byte(userID), State: wire.UserJoined,
		}.Encode())
	}

	c.server.registry.JoinRoom(id, c)
	return nil
}

func (c *Connection) leaveRoom(sendAck bool) error {
	c.mu.Lock()
	id := c.roomID
	userID := c.userID
	c.mu.Unlock()
	if id == "" {
		return nil
	}

	c.server.registry.LeaveRoom(id, c)
	c.mu.Lock()
	c.roomID = ""
	c.mu.Unlock()

	notify := !c.server.registry.OtherUserConnectionExists(id, userID, c)
	if notify {
		c.server.registry.BroadcastOtherUsers(id, c, wire.TypeUserState, wire.UserState{
			UserID: []byte(userID), State: wire.UserLeft,
		}.Encode())
	}

	if sendAck {
		return c.send(wire.TypeReRoom, wire.ReRoom{Response: wire.RoomLeft}.Encode())
	}
	return nil
}

func (c *Connection) handleRtUpload(payload []byte) error {
	req, err := wire.DecodeRtUpload(payload)
	if err != nil {
		return fmt.Errorf("engine: decode RtUpload: %w", err)
	}

	var code uint8
	var openErr error
	switch req.Request {
	case wire.TransferReceive:
		code, openErr = c.transfers.OpenReceive(req.TransferID, req.Size)
	case wire.TransferTransmit:
		code, openErr = c.transfers.OpenTransmit(req.TransferID, req.Size)
	default:
		return fmt.Errorf("engine: unknown RtUpload.Request %d", req.Request)
	}

	if errors.Is(openErr, transfer.ErrTransferExists) {
		return fmt.Errorf("engine: transfer id collision: %w", openErr)
	}
	if openErr != nil {
		return c.send(wire.TypeReUpload, wire.ReUpload{
			TransferID: req.TransferID, Response: wire.UploadErrorOccurred, Error: code,
		}.Encode())
	}

	response := wire.UploadReadyWrite
	if req.Request == wire.TransferTransmit {
		response = wire.UploadReadyRead
	}
	return c.send(wire.TypeReUpload, wire.ReUpload{
		TransferID: req.TransferID, Response: response, Error: wire.UploadErrNone,
	}.Encode())
}

func (c *Connection) handleUpload(payload []byte) error {
	req, err := wire.DecodeUpload(payload)
	if err != nil {
		return fmt.Errorf("engine: decode Upload: %w", err)
	}

	completed, err := c.transfers.WriteChunk(req.TransferID, req.Chunk)
	if err != nil {
		return fmt.Errorf("engine: write chunk: %w", err)
	}

	state := wire.UploadNext
	if completed {
		state = wire.UploadCompleted
		if err := c.transfers.Close(req.TransferID); err != nil {
			return fmt.Errorf("engine: close completed transfer: %w", err)
		}
	}
	return c.send(wire.TypeUploadState, wire.UploadState{
		TransferID: req.TransferID, State: state,
	}.Encode())
}

func (c *Connection) handleUploadState(payload []byte) error {
	req, err := wire.DecodeUploadState(payload)
	if err != nil {
		return fmt.Errorf("engine: decode UploadState: %w", err)
	}

	switch req.State {
	case wire.UploadNext:
		chunk, err := c.transfers.NextChunk(req.TransferID)
		if err != nil {
			return fmt.Errorf("engine: next chunk: %w", err)
		}
		return c.send(wire.TypeUpload, wire.Upload{
			TransferID: req.TransferID, Chunk: chunk,
		}.Encode())

	case wire.UploadCompleted, wire.UploadCanceled:
		if err := c.transfers.Close(req.TransferID); err != nil {
			return fmt.Errorf("engine: close transfer: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("engine: unknown UploadState.State %d", req.State)
	}
}

func (c *Connection) handlePong(payload []byte) error {
	req, err := wire.DecodePing(payload)
	if err != nil {
		return fmt.Errorf("engine: decode Pong: %w", err)
	}

	c.mu.Lock()
	expected := c.lastPingSent
	c.mu.Unlock()
	if req.Timestamp != expected {
		return fmt.Errorf("engine: pong timestamp mismatch: got %d, want %d", req.Timestamp, expected)
	}
	return nil
}

// constantTimeEqual compares derived password keys without leaking their
// contents through timing, the same discipline the reference relay applies
// to token comparisons via subtle.ConstantTimeCompare.
func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

package wire

// ServerKeyExchange is the server's half of the handshake (§4.2, §4.3):
// its long-term signature public key, a fresh ephemeral KEM public key, and
// a signature over that ephemeral key.
type ServerKeyExchange struct {
	ServerPublicKey    []byte
	EphemeralPublicKey []byte
	Signature          []byte
}

func (p ServerKeyExchange) Encode() []byte {
	e := NewEncoder()
	e.PutBytes(p.ServerPublicKey)
	e.PutBytes(p.EphemeralPublicKey)
	e.PutBytes(p.Signature)
	return e.Bytes()
}

func DecodeServerKeyExchange(buf []byte) (ServerKeyExchange, error) {
	d := NewDecoder(buf)
	var p ServerKeyExchange
	var err error
	if p.ServerPublicKey, err = d.Bytes(); err != nil {
		return p, err
	}
	if p.EphemeralPublicKey, err = d.Bytes(); err != nil {
		return p, err
	}
	if p.Signature, err = d.Bytes(); err != nil {
		return p, err
	}
	return p, nil
}

// ClientKeyExchange carries the KEM ciphertext encapsulated against the
// server's ephemeral public key.
type ClientKeyExchange struct {
	Ciphertext []byte
}

func (p ClientKeyExchange) Encode() []byte {
	e := NewEncoder()
	e.PutBytes(p.Ciphertext)
	return e.Bytes()
}

func DecodeClientKeyExchange(buf []byte) (ClientKeyExchange, error) {
	d := NewDecoder(buf)
	var p ClientKeyExchange
	var err error
	if p.Ciphertext, err = d.Bytes(); err != nil {
		return p, err
	}
	return p, nil
}

// RtAuthorization (C→S): a signin or signup attempt.
type RtAuthorization struct {
	Username []byte
	Password []byte
	Request  uint8
}

func (p RtAuthorization) Encode() []byte {
	e := NewEncoder()
	e.PutBytes(p.Username)
	e.PutBytes(p.Password)
	e.PutUint8(p.Request)
	return e.Bytes()
}

func DecodeRtAuthorization(buf []byte) (RtAuthorization, error) {
	d := NewDecoder(buf)
	var p RtAuthorization
	var err error
	if p.Username, err = d.Bytes(); err != nil {
		return p, err
	}
	if p.Password, err = d.Bytes(); err != nil {
		return p, err
	}
	if p.Request, err = d.Uint8(); err != nil {
		return p, err
	}
	return p, nil
}

// ReAuthorization (S→C): outcome of an RtAuthorization.
type ReAuthorization struct {
	Response uint8
	Error    uint8
}

func (p ReAuthorization) Encode() []byte {
	e := NewEncoder()
	e.PutUint8(p.Response)
	e.PutUint8(p.Error)
	return e.Bytes()
}

func DecodeReAuthorization(buf []byte) (ReAuthorization, error) {
	d := NewDecoder(buf)
	var p ReAuthorization
	var err error
	if p.Response, err = d.Uint8(); err != nil {
		return p, err
	}
	if p.Error, err = d.Uint8(); err != nil {
		return p, err
	}
	return p, nil
}

// RoomInfo is one entry of Established.Rooms.
type RoomInfo struct {
	ID   []byte
	Name string
}

// Established (S→C): sent once right after a successful authorization.
type Established struct {
	ServerName string
	Motd       string
	Rooms      []RoomInfo
}

func (p Established) Encode() []byte {
	e := NewEncoder()
	e.PutString(p.ServerName)
	e.PutString(p.Motd)
	e.PutUint32(uint32(len(p.Rooms)))
	for _, r := range p.Rooms {
		e.PutBytes(r.ID)
		e.PutString(r.Name)
	}
	return e.Bytes()
}

func DecodeEstablished(buf []byte) (Established, error) {
	d := NewDecoder(buf)
	var p Established
	var err error
	if p.ServerName, err = d.String(); err != nil {
		return p, err
	}
	if p.Motd, err = d.String(); err != nil {
		return p, err
	}
	n, err := d.Uint32()
	if err != nil {
		return p, err
	}
	if n > maxFieldLen {
		return p, ErrInvalidLength
	}
	p.Rooms = make([]RoomInfo, 0, n)
	for i := uint32(0); i < n; i++ {
		var r RoomInfo
		if r.ID, err = d.Bytes(); err != nil {
			return p, err
		}
		if r.Name, err = d.String(); err != nil {
			return p, err
		}
		p.Rooms = append(p.Rooms, r)
	}
	return p, nil
}

// Synchronize (C→S): replay every archived message after last_seen_id.
type Synchronize struct {
	LastSeenID []byte
}

func (p Synchronize) Encode() []byte {
	e := NewEncoder()
	e.PutBytes(p.LastSeenID)
	return e.Bytes()
}

func DecodeSynchronize(buf []byte) (Synchronize, error) {
	d := NewDecoder(buf)
	var p Synchronize
	var err error
	if p.LastSeenID, err = d.Bytes(); err != nil {
		return p, err
	}
	return p, nil
}

// UserState (S→C): a distinct-user join/leave presence notification.
type UserState struct {
	UserID []byte
	State  uint8
}

func (p UserState) Encode() []byte {
	e := NewEncoder()
	e.PutBytes(p.UserID)
	e.PutUint8(p.State)
	return e.Bytes()
}

func DecodeUserState(buf []byte) (UserState, error) {
	d := NewDecoder(buf)
	var p UserState
	var err error
	if p.UserID, err = d.Bytes(); err != nil {
		return p, err
	}
	if p.State, err = d.Uint8(); err != nil {
		return p, err
	}
	return p, nil
}

// Message (both directions): client submits {MessageID, Content}; server
// overwrites Timestamp and SenderID before archival and fan-out.
type Message struct {
	Timestamp int64
	MessageID []byte
	SenderID  []byte
	Content   string
}

func (p Message) Encode() []byte {
	e := NewEncoder()
	e.PutInt64(p.Timestamp)
	e.PutBytes(p.MessageID)
	e.PutBytes(p.SenderID)
	e.PutString(p.Content)
	return e.Bytes()
}

func DecodeMessage(buf []byte) (Message, error) {
	d := NewDecoder(buf)
	var p Message
	var err error
	if p.Timestamp, err = d.Int64(); err != nil {
		return p, err
	}
	if p.MessageID, err = d.Bytes(); err != nil {
		return p, err
	}
	if p.SenderID, err = d.Bytes(); err != nil {
		return p, err
	}
	if p.Content, err = d.String(); err != nil {
		return p, err
	}
	return p, nil
}

// RtRoom (C→S): join or leave a room.
type RtRoom struct {
	RoomID  []byte
	Request uint8
}

func (p RtRoom) Encode() []byte {
	e := NewEncoder()
	e.PutBytes(p.RoomID)
	e.PutUint8(p.Request)
	return e.Bytes()
}

func DecodeRtRoom(buf []byte) (RtRoom, error) {
	d := NewDecoder(buf)
	var p RtRoom
	var err error
	if p.RoomID, err = d.Bytes(); err != nil {
		return p, err
	}
	if p.Request, err = d.Uint8(); err != nil {
		return p, err
	}
	return p, nil
}

// ReRoom (S→C): acknowledges RtRoom.
type ReRoom struct {
	Response uint8
}

func (p ReRoom) Encode() []byte {
	e := NewEncoder()
	e.PutUint8(p.Response)
	return e.Bytes()
}

func DecodeReRoom(buf []byte) (ReRoom, error) {
	d := NewDecoder(buf)
	var p ReRoom
	var err error
	if p.Response, err = d.Uint8(); err != nil {
		return p, err
	}
	return p, nil
}

// RtUpload (C→S): open a transfer.
type RtUpload struct {
	TransferID []byte
	Size       int64
	Request    uint8
}

func (p RtUpload) Encode() []byte {
	e := NewEncoder()
	e.PutBytes(p.TransferID)
	e.PutInt64(p.Size)
	e.PutUint8(p.Request)
	return e.Bytes()
}

func DecodeRtUpload(buf []byte) (RtUpload, error) {
	d := NewDecoder(buf)
	var p RtUpload
	var err error
	if p.TransferID, err = d.Bytes(); err != nil {
		return p, err
	}
	if p.Size, err = d.Int64(); err != nil {
		return p, err
	}
	if p.Request, err = d.Uint8(); err != nil {
		return p, err
	}
	return p, nil
}

// ReUpload (S→C): acknowledges RtUpload, or reports a transfer-setup error.
type ReUpload struct {
	TransferID []byte
	Response   uint8
	Error      uint8
}

func (p ReUpload) Encode() []byte {
	e := NewEncoder()
	e.PutBytes(p.TransferID)
	e.PutUint8(p.Response)
	e.PutUint8(p.Error)
	return e.Bytes()
}

func DecodeReUpload(buf []byte) (ReUpload, error) {
	d := NewDecoder(buf)
	var p ReUpload
	var err error
	if p.TransferID, err = d.Bytes(); err != nil {
		return p, err
	}
	if p.Response, err = d.Uint8(); err != nil {
		return p, err
	}
	if p.Error, err = d.Uint8(); err != nil {
		return p, err
	}
	return p, nil
}

// Upload (both directions): one chunk of transfer data.
type Upload struct {
	TransferID []byte
	Chunk      []byte
}

func (p Upload) Encode() []byte {
	e := NewEncoder()
	e.PutBytes(p.TransferID)
	e.PutBytes(p.Chunk)
	return e.Bytes()
}

func DecodeUpload(buf []byte) (Upload, error) {
	d := NewDecoder(buf)
	var p Upload
	var err error
	if p.TransferID, err = d.Bytes(); err != nil {
		return p, err
	}
	if p.Chunk, err = d.Bytes(); err != nil {
		return p, err
	}
	return p, nil
}

// UploadState (both directions): flow control for a transfer.
type UploadState struct {
	TransferID []byte
	State      uint8
}

func (p UploadState) Encode() []byte {
	e := NewEncoder()
	e.PutBytes(p.TransferID)
	e.PutUint8(p.State)
	return e.Bytes()
}

func DecodeUploadState(buf []byte) (UploadState, error) {
	d := NewDecoder(buf)
	var p UploadState
	var err error
	if p.TransferID, err = d.Bytes(); err != nil {
		return p, err
	}
	if p.State, err = d.Uint8(); err != nil {
		return p, err
	}
	return p, nil
}

// Ping / Pong (both directions): liveness check, correlated by Timestamp.
type Ping struct {
	Timestamp int64
}

func (p Ping) Encode() []byte {
	e := NewEncoder()
	e.PutInt64(p.Timestamp)
	return e.Bytes()
}

func DecodePing(buf []byte) (Ping, error) {
	d := NewDecoder(buf)
	var p Ping
	var err error
	if p.Timestamp, err = d.Int64(); err != nil {
		return p, err
	}
	return p, nil
}

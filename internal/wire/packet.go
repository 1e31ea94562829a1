package wire

// PacketType identifies the payload schema carried by a frame (§6).
type PacketType uint8

const (
	TypeHandshake       PacketType = 0
	TypeRtAuthorization PacketType = 1
	TypeReAuthorization PacketType = 2
	TypeEstablished     PacketType = 3
	TypeSynchronize     PacketType = 4
	TypeUserState       PacketType = 5
	TypeMessage         PacketType = 6
	TypeRtRoom          PacketType = 7
	TypeReRoom          PacketType = 8
	TypeRtUpload        PacketType = 9
	TypeReUpload        PacketType = 10
	TypeUpload          PacketType = 11
	TypeUploadState     PacketType = 12
	TypePing            PacketType = 13
	TypePong            PacketType = 14
)

func (t PacketType) String() string {
	switch t {
	case TypeHandshake:
		return "Handshake"
	case TypeRtAuthorization:
		return "RtAuthorization"
	case TypeReAuthorization:
		return "ReAuthorization"
	case TypeEstablished:
		return "Established"
	case TypeSynchronize:
		return "Synchronize"
	case TypeUserState:
		return "UserState"
	case TypeMessage:
		return "Message"
	case TypeRtRoom:
		return "RtRoom"
	case TypeReRoom:
		return "ReRoom"
	case TypeRtUpload:
		return "RtUpload"
	case TypeReUpload:
		return "ReUpload"
	case TypeUpload:
		return "Upload"
	case TypeUploadState:
		return "UploadState"
	case TypePing:
		return "Ping"
	case TypePong:
		return "Pong"
	default:
		return "Unknown"
	}
}

// Authorization request/response enums (RtAuthorization.Request).
const (
	AuthSignin uint8 = iota
	AuthSignup
)

// ReAuthorization.Response
const (
	AuthErrorOccurred uint8 = iota
	AuthAuthorized
)

// ReAuthorization.Error
const (
	AuthErrNone uint8 = iota
	AuthErrInvalidUsername
	AuthErrInvalidPassword
	AuthErrUserExists
)

// UserState.State
const (
	UserJoined uint8 = iota
	UserLeft
)

// RtRoom.Request
const (
	RoomJoin uint8 = iota
	RoomLeave
)

// ReRoom.Response
const (
	RoomJoined uint8 = iota
	RoomLeft
)

// RtUpload.Request
const (
	TransferReceive uint8 = iota
	TransferTransmit
)

// ReUpload.Response
const (
	UploadErrorOccurred uint8 = iota
	UploadReadyRead
	UploadReadyWrite
)

// ReUpload.Error
const (
	UploadErrNone uint8 = iota
	UploadErrInternal
	UploadErrBadRequest
	UploadErrNotFound
)

// UploadState.State
const (
	UploadNext uint8 = iota
	UploadCanceled
	UploadCompleted
)

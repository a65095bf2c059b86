package interfaces

type Replier interface {
	InternalError()
	Usage()
	ReplyWithMessage(msg string)
}

package dispatch

// Action is one side effect the executor performs for a message. The
// concrete types below are the only implementations.
type Action interface {
	Kind() string
	action()
}

// MediaKind tells which index a PostMedia key came from.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaAudio MediaKind = "audio"
)

// Reject answers an unauthorized sender.
type Reject struct {
	Text string
}

// Reply posts canned text.
type Reply struct {
	Text string
}

// DeleteHistory purges the acting user's recent messages in a channel.
type DeleteHistory struct {
	Channel string
}

// ListCommands posts the keys of one catalog.
type ListCommands struct {
	Catalog string
	Entries []string
}

// ListDirectory posts the entries of a media store directory.
type ListDirectory struct {
	Path string
}

// RandomMedia uploads a random file from Dir.
type RandomMedia struct {
	Dir string
}

// PostMedia uploads one indexed file.
type PostMedia struct {
	Kind MediaKind
	Key  string
	Path string
}

func (Reject) Kind() string        { return "reject" }
func (Reply) Kind() string         { return "reply" }
func (DeleteHistory) Kind() string { return "delete_history" }
func (ListCommands) Kind() string  { return "list_commands" }
func (ListDirectory) Kind() string { return "list_directory" }
func (RandomMedia) Kind() string   { return "random_media" }
func (PostMedia) Kind() string     { return "post_media" }

func (Reject) action()        {}
func (Reply) action()         {}
func (DeleteHistory) action() {}
func (ListCommands) action()  {}
func (ListDirectory) action() {}
func (RandomMedia) action()   {}
func (PostMedia) action()     {}

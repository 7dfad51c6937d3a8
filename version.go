package shuttle

// Version is the library version. Overridable at build time:
//
//	go build -ldflags "-X github.com/wovenlab/shuttle.Version=v1.2.3"
var Version = "0.3.0"

package version

var Version = "indev"

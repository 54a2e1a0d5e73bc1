package config

var Version = "undefined"

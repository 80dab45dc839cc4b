package ussfs

// Version of the ussfs library and CLI
const Version = "0.1.0"

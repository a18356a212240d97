package main

const (
	exitCodeSuccess     = 0
	exitCodeFailure     = 1
	exitCodeUsage       = 2
	exitCodeInterrupted = 130
)

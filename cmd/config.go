package main

import "time"

type Config struct {
	TypingIdle                time.Duration `env:"TYPING_IDLE,default=2s"`
	LimitMessages             *int          `env:"LIMIT_MESSAGES"`
	ModerationCharReplacement string        `env:"MODERATION_CHARACTER_REPLACEMENT,default=*"`
	TokenSecret               string        `env:"TOKEN_SECRET,required=true"`
	TokenDuration             time.Duration `env:"TOKEN_DURATION,default=720h"`
	BadgerFilepath            string        `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath             string        `env:"BLUGE_FILEPATH,required=true"`
	LogLevel                  string        `env:"LOG_LEVEL,default=INFO"`
	Host                      string        `env:"HOST,default=localhost"`
	Port                      int           `env:"PORT,default=8080"`
}

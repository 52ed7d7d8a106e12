// Package config declares the CLI grammar. Values come from flags,
// GIMBAL_* environment variables and layered config files, in that
// priority order; the command structs themselves live in internal/cmd.
package config

import (
	"github.com/gimbalkit/gimbal/internal/cmd"
)

type CLI struct {
	Log struct {
		Level   string `help:"Log level" enum:"trace,debug,info,warn,error" default:"info" env:"GIMBAL_LOG_LEVEL"`
		File    string `help:"Also append log records to this file" env:"GIMBAL_LOG_FILE" type:"path"`
		RawFile string `help:"Dump raw wire traffic to this file" env:"GIMBAL_LOG_RAW_FILE" type:"path"`
	} `embed:"" prefix:"log."`

	Config string `help:"Load configuration from this file" env:"GIMBAL_CONFIG" type:"path"`

	Monitor   cmd.Monitor       `cmd:"" help:"Print decoded device events"`
	Gesture   cmd.Gesture       `cmd:"" help:"Run an interactive transform gesture against a demo entity"`
	Relay     cmd.Relay         `cmd:"" help:"Republish the daemon socket on a TCP address"`
	Devices   cmd.Devices       `cmd:"" help:"List attached 6-DoF devices"`
	ConfigCmd cmd.ConfigCommand `cmd:"" name:"config" help:"Configuration file utilities"`
	Setup     cmd.Setup         `cmd:"" help:"Install udev rules granting device access"`
}

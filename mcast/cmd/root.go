// Copyright © 2024-2026 the mcast authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package cmd

import (
	"fmt"
	"os"
	"runtime"

	colorable "github.com/mattn/go-colorable"
	"github.com/shenwei356/go-logging"
	"github.com/spf13/cobra"
)

// VERSION of mcast
const VERSION = "0.9.0"

var log = logging.MustGetLogger("mcast")

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "mcast",
	Short: "Motif Cluster Alignment and Search Tool",
	Long: fmt.Sprintf(`
mcast: motif cluster alignment and search tool

Version: v%s

Documents: https://github.com/motiftools/mcast
Source code: https://github.com/motiftools/mcast

mcast searches sequences for statistically significant clusters of
non-overlapping occurrences of a given set of motifs.

`, VERSION),
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen once
// to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(-1)
	}
}

func init() {
	logFormat := logging.MustStringFormatter(`%{color}%{time:15:04:05.000} [%{level:.4s}]%{color:reset} %{message}`)
	backend := logging.NewLogBackend(colorable.NewColorableStderr(), "", 0)
	backendFormatter := logging.NewBackendFormatter(backend, logFormat)
	logging.SetBackend(backendFormatter)

	RootCmd.PersistentFlags().IntP("threads", "j", runtime.NumCPU(),
		formatFlagUsage(`Maximum number of CPUs to use.`))

	RootCmd.PersistentFlags().BoolP("quiet", "", false,
		formatFlagUsage(`Do not print any verbose information. But you can write them to a file with --log.`))

	RootCmd.PersistentFlags().StringP("log", "", "",
		formatFlagUsage(`Log file.`))

	RootCmd.CompletionOptions.DisableDefaultCmd = true
	RootCmd.SetUsageTemplate(usageTemplate(""))
}

func checkError(err error) {
	if err != nil {
		log.Error(err)
		os.Exit(-1)
	}
}

func isStdin(file string) bool {
	return file == "-"
}

// addLog mirrors all log output to opt.LogFile when --log is given. The
// returned function flushes and closes the file.
func addLog(logfile string, quiet bool) func() {
	if logfile == "" {
		return func() {}
	}
	fh, err := os.Create(logfile)
	checkError(err)

	logFormat := logging.MustStringFormatter(`%{time:15:04:05.000} [%{level:.4s}] %{message}`)
	backendFile := logging.NewBackendFormatter(logging.NewLogBackend(fh, "", 0), logFormat)
	if quiet {
		logging.SetBackend(backendFile)
	} else {
		backendStderr := logging.NewBackendFormatter(
			logging.NewLogBackend(colorable.NewColorableStderr(), "", 0),
			logging.MustStringFormatter(`%{color}%{time:15:04:05.000} [%{level:.4s}]%{color:reset} %{message}`))
		logging.SetBackend(backendStderr, backendFile)
	}
	return func() {
		fh.Close()
	}
}

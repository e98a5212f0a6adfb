// Command hako-client is a CLI uploader/downloader for a Hako server,
// exercising pkg/hakoclient the way a script or CI job would rather than
// through the browser SPA.
package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"os"

	"github.com/skystar-p/hako/pkg/hakoclient"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "upload":
		runUpload(os.Args[2:])
	case "download":
		runDownload(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: hako-client upload -server URL -file PATH")
	fmt.Fprintln(os.Stderr, "       hako-client download -server URL -id ID -passphrase BASE64 -out PATH")
}

func runUpload(args []string) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	server := fs.String("server", "http://127.0.0.1:12321", "hako server base URL")
	path := fs.String("file", "", "path of the file to upload")
	fs.Parse(args)

	if *path == "" {
		fmt.Fprintln(os.Stderr, "upload: -file is required")
		os.Exit(2)
	}

	f, err := os.Open(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "upload:", err)
		os.Exit(1)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		fmt.Fprintln(os.Stderr, "upload:", err)
		os.Exit(1)
	}

	uploader := hakoclient.NewUploader(*server)
	res, err := uploader.UploadFile(context.Background(), info.Name(), f, info.Size(), func(sent, total int64) {
		fmt.Fprintf(os.Stderr, "\r%d/%d bytes", sent, total)
	})
	fmt.Fprintln(os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "upload:", err)
		os.Exit(1)
	}

	fmt.Printf("id=%d passphrase=%s\n", res.ID, base64.StdEncoding.EncodeToString(res.Passphrase))
}

func runDownload(args []string) {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	server := fs.String("server", "http://127.0.0.1:12321", "hako server base URL")
	id := fs.Int64("id", 0, "object id")
	passphrase := fs.String("passphrase", "", "base64-encoded passphrase")
	out := fs.String("out", "", "path to write the decrypted file")
	fs.Parse(args)

	if *id <= 0 || *passphrase == "" || *out == "" {
		fmt.Fprintln(os.Stderr, "download: -id, -passphrase and -out are required")
		os.Exit(2)
	}

	pass, err := base64.StdEncoding.DecodeString(*passphrase)
	if err != nil {
		fmt.Fprintln(os.Stderr, "download: invalid passphrase:", err)
		os.Exit(1)
	}

	f, err := os.Create(*out)
	if err != nil {
		fmt.Fprintln(os.Stderr, "download:", err)
		os.Exit(1)
	}
	defer f.Close()

	downloader := hakoclient.NewDownloader(*server)
	filename, err := downloader.DownloadFile(context.Background(), *id, pass, f, func(received, total int64) {
		fmt.Fprintf(os.Stderr, "\r%d/%d bytes", received, total)
	})
	fmt.Fprintln(os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "download:", err)
		os.Exit(1)
	}

	fmt.Printf("decrypted filename: %s\n", filename)
}

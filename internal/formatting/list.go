package formatting

import (
	"fmt"
	"strconv"

	"github.com/pojntfx/gtar/pkg/tarfmt"
)

// EntryLine renders one listing line for an entry: the bare name, or
// an ls -l style line under verbose.
func EntryLine(hdr *tarfmt.Header, verbose, numericOwner bool) string {
	if !verbose {
		return hdr.Name
	}

	owner := ownerString(hdr, numericOwner)

	line := fmt.Sprintf(
		"%s %s %10d %s %s",
		modeString(hdr),
		owner,
		hdr.LogicalSize(),
		hdr.ModTime.Format("2006-01-02 15:04"),
		hdr.Name,
	)

	switch hdr.Typeflag {
	case tarfmt.TypeSymlink:
		line += " -> " + hdr.Linkname
	case tarfmt.TypeLink:
		line += " link to " + hdr.Linkname
	}

	return line
}

func ownerString(hdr *tarfmt.Header, numericOwner bool) string {
	uname, gname := hdr.Uname, hdr.Gname
	if numericOwner || uname == "" {
		uname = strconv.FormatInt(hdr.UID, 10)
	}
	if numericOwner || gname == "" {
		gname = strconv.FormatInt(hdr.GID, 10)
	}

	return uname + "/" + gname
}

func modeString(hdr *tarfmt.Header) string {
	buf := []byte("----------")

	switch hdr.Typeflag {
	case tarfmt.TypeDir:
		buf[0] = 'd'
	case tarfmt.TypeSymlink:
		buf[0] = 'l'
	case tarfmt.TypeChar:
		buf[0] = 'c'
	case tarfmt.TypeBlock:
		buf[0] = 'b'
	case tarfmt.TypeFifo:
		buf[0] = 'p'
	}

	perms := "rwxrwxrwx"
	for i := 0; i < 9; i++ {
		if hdr.Mode&(1<<uint(8-i)) != 0 {
			buf[i+1] = perms[i]
		}
	}

	if hdr.Mode&04000 != 0 {
		buf[3] = 's'
	}
	if hdr.Mode&02000 != 0 {
		buf[6] = 's'
	}
	if hdr.Mode&01000 != 0 {
		buf[9] = 't'
	}

	return string(buf)
}

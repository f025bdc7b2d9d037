package fb

import (
	"github.com/pkg/errors"
)

const (
	blobWriteSegment = 4096
	blobReadSegment  = 65535
)

var blobInfoItems = []byte{isc_info_blob_total_length, isc_info_end}

// writeBlob creates a blob in the current transaction and writes data to it in
// segments. It returns the id to store in the column.
func (c *codec) writeBlob(data []byte) (Quad, error) {
	var h BlobHandle
	var id Quad
	c.api.createBlob(c.status, c.db, c.tr, &h, &id)
	if err := statusError(c.api, c.status, "isc_create_blob2"); err != nil {
		return Quad{}, err
	}
	for off := 0; off < len(data); off += blobWriteSegment {
		end := min(off+blobWriteSegment, len(data))
		c.api.putSegment(c.status, &h, data[off:end])
		if err := statusError(c.api, c.status, "isc_put_segment"); err != nil {
			c.abandonBlob(&h)
			return Quad{}, err
		}
	}
	c.api.closeBlob(c.status, &h)
	if err := statusError(c.api, c.status, "isc_close_blob"); err != nil {
		return Quad{}, err
	}
	return id, nil
}

// readBlob opens the blob id and reads it to the end. The total length
// reported by the server only pre-sizes the result; a blob that turns out
// longer is still read completely.
func (c *codec) readBlob(id Quad) ([]byte, error) {
	var h BlobHandle
	c.api.openBlob(c.status, c.db, c.tr, &h, &id)
	if err := statusError(c.api, c.status, "isc_open_blob2"); err != nil {
		return nil, err
	}

	info := make([]byte, 32)
	c.api.blobInfo(c.status, &h, blobInfoItems, info)
	if err := statusError(c.api, c.status, "isc_blob_info"); err != nil {
		c.abandonBlob(&h)
		return nil, err
	}
	total, _ := infoValue(info, isc_info_blob_total_length)
	if total < 0 {
		total = 0
	}

	data := make([]byte, 0, total)
	seg := make([]byte, blobReadSegment)
	for {
		var actual uint16
		ret := c.api.getSegment(c.status, &h, &actual, seg)
		if actual > 0 {
			data = append(data, seg[:actual]...)
		}
		if ret == iscSegstrEOF || c.status[1] == iscSegstrEOF {
			break
		}
		if ret == 0 || ret == iscSegment || c.status[1] == iscSegment {
			continue
		}
		err := statusError(c.api, c.status, "isc_get_segment")
		if err == nil {
			err = errors.Errorf("isc_get_segment: %s", FormatStatus(ret))
		}
		c.abandonBlob(&h)
		return nil, err
	}

	c.api.closeBlob(c.status, &h)
	if err := statusError(c.api, c.status, "isc_close_blob"); err != nil {
		return nil, err
	}
	return data, nil
}

// abandonBlob closes h on an error path without disturbing the status vector
// holding the original failure.
func (c *codec) abandonBlob(h *BlobHandle) {
	var sv StatusVector
	c.api.closeBlob(&sv, h)
	warnStatus(c.api, &sv, "isc_close_blob", c.logger)
}

package aprs

import "strconv"

// ExtractPosition decodes an uncompressed `!` or `=` position report
// (DDMM.hhN/DDDMM.hhW) from a payload. It exists for area filters only;
// general payload interpretation is out of scope. Returns ok=false for
// anything it does not understand.
func ExtractPosition(payload string) (lat, lon float64, ok bool) {
	pos := -1
	for i := 0; i < len(payload); i++ {
		if payload[i] == '!' || payload[i] == '=' {
			pos = i
			break
		}
	}
	if pos < 0 {
		return 0, 0, false
	}
	data := payload[pos+1:]
	if len(data) < 19 {
		return 0, 0, false
	}

	latDeg, err1 := strconv.ParseFloat(data[0:2], 64)
	latMin, err2 := strconv.ParseFloat(data[2:7], 64)
	ns := data[7]
	lonDeg, err3 := strconv.ParseFloat(data[9:12], 64)
	lonMin, err4 := strconv.ParseFloat(data[12:17], 64)
	ew := data[17]
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return 0, 0, false
	}
	if (ns != 'N' && ns != 'S') || (ew != 'E' && ew != 'W') {
		return 0, 0, false
	}

	lat = latDeg + latMin/60.0
	if ns == 'S' {
		lat = -lat
	}
	lon = lonDeg + lonMin/60.0
	if ew == 'W' {
		lon = -lon
	}
	return lat, lon, true
}

// ExtractMessageAddressee returns the addressee of an APRS message
// payload (`:ADDRESSEE:text`, addressee padded to nine characters), or
// "" if the payload is not a message.
func ExtractMessageAddressee(payload string) string {
	if len(payload) < 11 || payload[0] != ':' || payload[10] != ':' {
		return ""
	}
	addr := payload[1:10]
	end := len(addr)
	for end > 0 && addr[end-1] == ' ' {
		end--
	}
	addr = addr[:end]
	if addr == "" {
		return ""
	}
	for i := 0; i < len(addr); i++ {
		c := addr[i]
		if (c < 'A' || c > 'Z') && (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '-' {
			return ""
		}
	}
	return addr
}

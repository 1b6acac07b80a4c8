package device

// The device reports file content digests using an unreflected CRC-32 with
// polynomial 0x04C11DB7, zero init and zero xorout. hash/crc32 only offers
// the reflected variants, so the table is built here.

const crcPoly = 0x04C11DB7

var crcTable = buildCRCTable()

func buildCRCTable() [256]uint32 {
	var table [256]uint32

	for i := range table {
		crc := uint32(i) << 24
		for bit := 0; bit < 8; bit++ {
			if crc&0x80000000 != 0 {
				crc = crc<<1 ^ crcPoly
			} else {
				crc <<= 1
			}
		}

		table[i] = crc
	}

	return table
}

// Checksum computes the content digest the device reports in file metadata.
func Checksum(data []byte) uint32 {
	var crc uint32
	for _, b := range data {
		crc = crc<<8 ^ crcTable[byte(crc>>24)^b]
	}

	return crc
}

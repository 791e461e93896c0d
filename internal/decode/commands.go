package decode

// commandEntry pairs a 16-bit command word with its meaning.
type commandEntry struct {
	code uint16
	desc string
}

// UnknownCommand is the description for words not present in the table.
const UnknownCommand = "????"

// commandTable holds every known SYSTEM CONTROL word in the order the
// codes were identified on a Kenwood VH system. Later entries override
// earlier ones for the same code: 0x8044 and 0x8045 appear twice and
// the transport-control meanings win over the source-select ones.
// Unless noted, words travel from the amplifier to the peripherals.
var commandTable = []commandEntry{
	{0x1000, "System ON"},
	{0x1080, "System OFF"},
	{0x8044, "Source: CD"},
	{0x8045, "CD ON"},
	{0x8084, "Source: FM"},
	{0x8085, "FM ON"},
	{0x80a4, "Source: Tape"},
	{0x80a5, "Tape ON"},
	{0x80b4, "Source: MD"},
	{0x80b5, "MD ON"},
	{0x80c4, "Source: AUX"},
	{0x80c5, "AUX ON"},
	{0x0898, "ON3"},

	{0x857b, "Seek Rev"},
	{0x85fb, "Seek Fwd"},

	{0x04c9, "Tape: ACK?"}, // from the tape deck

	{0x051b, "Tape Rev"},
	{0x059b, "Tape Fwd"},
	{0x05bb, "Tape Stop"},

	{0x851b, "MD Play/Pause"},
	{0x859b, "MD Stop"},

	{0x8045, "CD Play/Pause"},
	{0x8044, "CD Stop"},

	{0x4590, "Tape OTE"},
	{0x0503, "MD OTE"},

	{0x0581, "Num 1 down"},
	{0x0541, "Num 2 down"},
	{0x05c1, "Num 3 down"},
	{0x0521, "Num 4 down"},
	{0x05a1, "Num 5 down"},
	{0x0561, "Num 6 down"},
	{0x05e1, "Num 7 down"},
	{0x0511, "Num 8 down"},
	{0x0591, "Num 9 down"},
	{0x05b0, "Num +10 down"},
	{0x0501, "Num 0 down"},
	{0x45f2, "Num +100 down"},
	{0x8078, "Button up"},
}

var commandNames = buildCommandNames()

func buildCommandNames() map[uint16]string {
	m := make(map[uint16]string, len(commandTable))
	for _, e := range commandTable {
		m[e.code] = e.desc
	}
	return m
}

// Describe returns the human-readable meaning of a command word, or
// UnknownCommand if the word is not in the table.
func Describe(word uint16) string {
	if desc, ok := commandNames[word]; ok {
		return desc
	}
	return UnknownCommand
}

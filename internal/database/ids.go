package database

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

var (
	idNode *snowflake.Node
	idMu   sync.Mutex
)

// InitRecordIDs configures the snowflake node used for attendance record ids.
// Every process writing to the same database needs a distinct node (0-1023).
func InitRecordIDs(node int64) error {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return fmt.Errorf("creating snowflake node %d: %w", node, err)
	}
	idMu.Lock()
	idNode = n
	idMu.Unlock()
	return nil
}

// NewRecordID returns a new time-ordered attendance record id.
func NewRecordID() int64 {
	idMu.Lock()
	defer idMu.Unlock()
	if idNode == nil {
		// Node 0 is only used when InitRecordIDs was never called (tests, CLI tools).
		idNode, _ = snowflake.NewNode(0)
	}
	return idNode.Generate().Int64()
}

// NewRowID returns a random primary key for employee rows.
func NewRowID() string {
	return uuid.NewString()
}

// FormatEmployeeID formats a sequence number as EMP001, EMP002, ...
func FormatEmployeeID(seq int) string {
	return fmt.Sprintf("%s%03d", EmployeeIDPrefix, seq)
}

// ParseEmployeeSeq extracts the sequence number from an EMP### identifier.
func ParseEmployeeSeq(employeeID string) (int, bool) {
	rest, ok := strings.CutPrefix(employeeID, EmployeeIDPrefix)
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// NextEmployeeIDFrom returns the identifier following the highest sequence in ids.
// Identifiers that don't follow the EMP### scheme are ignored.
func NextEmployeeIDFrom(ids []string) string {
	highest := 0
	for _, id := range ids {
		if n, ok := ParseEmployeeSeq(id); ok && n > highest {
			highest = n
		}
	}
	return FormatEmployeeID(highest + 1)
}

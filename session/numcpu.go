package session

import "github.com/RibbonsAlmark/Relay/sysload"

func defaultNumCPU() int { return sysload.NumCPU() }

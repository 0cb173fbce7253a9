package clock

import "time"

// Clock 抽象了“当前时间”，让结算窗口、撤销时限等逻辑可以在测试中被精确控制。
type Clock interface {
	Now() time.Time
}

// Real 使用系统时钟。
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

// Fixed 始终返回固定时间，测试用。
type Fixed struct {
	T time.Time
}

func (f Fixed) Now() time.Time { return f.T }

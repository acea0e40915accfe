package framebuffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccumulator(t *testing.T) {
	t.Run("AppendEmpty", func(t *testing.T) {
		acc := NewAccumulator()
		assert.Error(t, acc.Append(nil))
		assert.Error(t, acc.Append([]int16{}))
		assert.Equal(t, 0, acc.Len())
	})

	t.Run("OrderingAcrossChunks", func(t *testing.T) {
		acc := NewAccumulator()
		var sent []int16
		for idx := int16(0); idx < 1000; idx++ {
			sent = append(sent, idx)
		}
		for offset := 0; offset < len(sent); offset += 100 {
			require.NoError(t, acc.Append(sent[offset:offset+100]))
		}

		frame := make([]int16, 480)
		var received []int16
		for acc.PopFrame(frame) {
			received = append(received, frame...)
		}
		assert.Equal(t, sent[:960], received)
		assert.Equal(t, 40, acc.Len())
	})

	t.Run("PopFrameInsufficient", func(t *testing.T) {
		acc := NewAccumulator()
		require.NoError(t, acc.Append(make([]int16, 479)))
		frame := make([]int16, 480)
		assert.False(t, acc.PopFrame(frame))
		assert.Equal(t, 479, acc.Len())
	})

	t.Run("FlushPadded", func(t *testing.T) {
		acc := NewAccumulator()
		require.NoError(t, acc.Append([]int16{1, 2, 3}))

		frame := make([]int16, 8)
		for idx := range frame {
			frame[idx] = -1 // make sure the padding really got zeroed
		}
		n, ok := acc.FlushPadded(frame)
		require.True(t, ok)
		assert.Equal(t, 3, n)
		assert.Equal(t, []int16{1, 2, 3, 0, 0, 0, 0, 0}, frame)
		assert.Equal(t, 0, acc.Len())

		n, ok = acc.FlushPadded(frame)
		assert.False(t, ok)
		assert.Equal(t, 0, n)
	})

	t.Run("GrowthKeepsContent", func(t *testing.T) {
		acc := NewAccumulator()
		big := make([]int16, baselineCapacity*3)
		for idx := range big {
			big[idx] = int16(idx % 32768)
		}
		require.NoError(t, acc.Append(big[:10]))
		require.NoError(t, acc.Append(big[10:]))

		frame := make([]int16, len(big))
		require.True(t, acc.PopFrame(frame))
		assert.Equal(t, big, frame)
	})

	t.Run("ResetShrinks", func(t *testing.T) {
		acc := NewAccumulator()
		require.NoError(t, acc.Append(make([]int16, baselineCapacity*4)))
		acc.Reset()
		assert.Equal(t, 0, acc.Len())
		assert.LessOrEqual(t, cap(acc.samples), baselineCapacity)
	})
}

package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/infinivision/kmem/constant"
	"github.com/infinivision/kmem/kernel"
)

func main() {
	cfg := kernel.DefaultConfig()
	cfg.DirName = "test.dev"
	cfg.RefCount = true
	k, err := kernel.Open(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer k.Close()

	c := k.Cache()
	{
		for i := uint32(0); i < 100; i++ {
			b := c.Read(1, i)
			binary.LittleEndian.PutUint32(b.Buffer(), i)
			c.Write(b)
			c.Release(b)
		}
	}
	{
		for i := uint32(0); i < 100; i++ {
			b := c.Read(1, i)
			if v := binary.LittleEndian.Uint32(b.Buffer()); v != i {
				log.Fatal(fmt.Errorf("block %v holds %v", i, v))
			}
			c.Release(b)
		}
		fmt.Printf("cache: %+v\n", c.Stats())
		c.Dump(os.Stdout)
	}
	{
		var wg sync.WaitGroup

		a := k.Allocator()
		for i := 0; i < cfg.NCPU; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				var pas []uintptr
				for {
					pa, err := a.Alloc()
					if err != nil {
						break
					}
					if !bytes.Equal(a.Page(pa)[:8], bytes.Repeat([]byte{constant.AllocFill}, 8)) {
						log.Fatal(fmt.Errorf("page %#x not filled", pa))
					}
					pas = append(pas, pa)
				}
				for _, pa := range pas {
					a.Retain(pa)
					a.Release(pa)
					a.Release(pa)
				}
			}()
		}
		wg.Wait()
		st := a.Stats()
		fmt.Printf("kalloc: total %d allocated %d steals %d free %v\n", st.Total, st.Allocated, st.Steals, st.Free)
	}
}
